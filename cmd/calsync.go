/*
Copyright © 2022 Nudge Labs

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/nudgelabs/nudged/googleservice"
	"github.com/nudgelabs/nudged/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const maxContactsToSyncWith = 7

var (
	countArg     int
	frequencyArg int
	targetArg    string
	timeSlotArg  string
	intervals    = []int{
		1, // weekly
		2, // bi-weekly
		4, // monthly
	}

	googleAPI googleservice.GCalendarAPIInterface
)

func init() {
	rootCmd.AddCommand(createCalsyncCmd())
}

func createCalsyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calsync",
		Short: "Deletes previous reach-out events and creates new ones based on configs",
		Long: `Deletes previous reach-out google calender events created by nudged
and creates new ones(up to a max of 7 contacts for a nudge target) to match the values set in .nudged.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalsync(cmd, config)
		},
	}

	cmd.Flags().IntVarP(&countArg, "count", "c", 4, "how many times you want to reach out to members of a nudge target")
	cmd.Flags().StringVarP(&targetArg, "target", "g", "", "nudge target to create reach-out events for")
	cmd.Flags().IntVarP(&frequencyArg, "freq", "f", 1, "how often you want to reach out i.e. 0 - weekly, 1 - bi-weekly, or 2 - monthly")
	cmd.Flags().StringVarP(&timeSlotArg, "time-slot", "t", "18:00-18:30", "time slot in the day allocated for reaching out")

	cmd.MarkFlagRequired("target")

	return cmd
}

func runCalsync(cmd *cobra.Command, config *viper.Viper) error {
	err := initGCalendarAPI(config)
	if err != nil {
		return err
	}

	err = validateFlags()
	if err != nil {
		return err
	}

	slotStartTime, slotEndTime := splitTimeSlot(timeSlotArg)

	eventRecurrence := eventRecurrence(config.GetString("settings.calsync-recurrence"))

	selectedTargetContactIds := config.GetStringSlice(fmt.Sprintf("nudge-targets.%s", targetArg))
	if len(selectedTargetContactIds) == 0 {
		return fmt.Errorf("no contacts in '%s' nudge target. Try creating '%s' and adding some contacts to it."+
			"\nUpdate app config in %s", targetArg, targetArg, config.ConfigFileUsed())
	}

	contacts := []googleservice.Contact{}
	err = config.UnmarshalKey("contacts", &contacts)
	cobra.CheckErr(err)

	targetContacts := filterContactsByIDs(contacts, selectedTargetContactIds)
	if len(targetContacts) == 0 {
		return fmt.Errorf("unable to find any contact details for members of '%s'"+
			"\nTry updating '%s' nudge target in app config located in %s", targetArg, targetArg, config.ConfigFileUsed())
	}

	// Clear any events previously created by calsync
	err = googleAPI.ClearAllEvents(config.GetStringSlice("events"))
	if err != nil {
		cmd.Printf("%s %v\n", warningLabel, err)
	}

	if len(targetContacts) > maxContactsToSyncWith {
		targetContacts = targetContacts[:maxContactsToSyncWith]
		cmd.Printf("%s Reach-out events are created for a Max of %v contacts."+
			"\nEvents will be created for ONLY the top %v contacts in '%s'."+
			"\nPlease update the nudge target accordingly, if you'd like to create events for a different set of contacts.\n",
			warningLabel, maxContactsToSyncWith, len(targetContacts), targetArg)
	}

	eventIds, err := googleAPI.CreateEvents(
		targetContacts,
		slotStartTime,
		slotEndTime, eventRecurrence,
	)
	if err != nil {
		return err
	}

	// Save created eventIds to config file
	config.Set("events", eventIds)
	config.WriteConfig()

	cmd.Printf("\nAll reach-out appointments with members of %s have been created!\n", targetArg)

	return nil
}

func validateFlags() error {
	// TODO: Move these validations into custom types later: https://github.com/spf13/cobra/issues/376
	if countArg <= 0 {
		return fmt.Errorf("invalid argument \"%v\", --count must be > 0", countArg)
	}

	if frequencyArg < 0 || frequencyArg >= len(intervals) {
		return fmt.Errorf("invalid argument \"%v\", --freq should be 0, 1, or 2", frequencyArg)
	}

	match, _ := regexp.MatchString("\\d{1,2}:\\d\\d-\\d{1,2}:\\d\\d", timeSlotArg)
	if !match {
		return fmt.Errorf("invalid argument \"%v\", valid --time-slot format required e.g. 18:00-18:30", timeSlotArg)
	}
	return nil
}

func eventRecurrence(recurrence string) string {
	return recurrence +
		fmt.Sprintf("COUNT=%d;INTERVAL=%d;", countArg, intervals[frequencyArg])
}

func splitTimeSlot(timeSlotStr string) (string, string) {
	list := strings.Split(timeSlotStr, "-")
	return list[0], list[1]
}

func filterContactsByIDs(allContacts []googleservice.Contact, contactIds []string) []googleservice.Contact {
	result := []googleservice.Contact{}
	for index, contact := range allContacts {
		if inList(contactIds, fmt.Sprintf("%v", index)) {
			result = append(result, contact)
		}
	}
	return result
}

func inList(list []string, item string) bool {
	for _, value := range list {
		if value == item {
			return true
		}
	}
	return false
}

func initGCalendarAPI(config *viper.Viper) error {
	if googleAPI != nil {
		return nil
	}

	credentialsFilePath := config.GetString("secrets.GOOGLE_APPLICATION_CREDENTIALS")
	if credentialsFilePath == "" {
		return formattedError(
			"must set the env var 'GOOGLE_APPLICATION_CREDENTIALS' or add it to 'secrets' in %s", config.ConfigFileUsed())
	}

	data, err := os.ReadFile(credentialsFilePath)
	if err != nil {
		return formattedError("unable to read google app credentials: %v", err)
	}

	credentials := types.GoogleAppCredentials{}
	if err := json.Unmarshal(data, &credentials); err != nil {
		return formattedError("unable to parse google app credentials: %v", err)
	}

	googleAPI = googleservice.NewGoogleCalendarAPI(credentials, config.GetString("settings.timezone"))
	return nil
}
