package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nudgelabs/nudged/googleservice"
	"github.com/spf13/cobra"
)

type TestDataProvider []struct {
	description string
	args        []string
	expectedOut string
}

func TestCalsyncCmd(t *testing.T) {
	var (
		csCmd     *cobra.Command
		buff      = new(bytes.Buffer)
		actualOut string
	)

	// Save cfgFile before stubbing it out
	// And revert to prev cfgFile after test is done
	savedCfgFile := cfgFile
	defer func() {
		cfgFile = savedCfgFile
	}()

	// Set cfgFile to point to test config.yml
	path, _ := os.Getwd()
	cfgFile = filepath.Join(path, "test-fixtures", "config.yml")

	// Save googleAPI before stubbing it out
	// And revert to prev googleAPI after test is done
	saveGoogleAPI := googleAPI
	defer func() {
		googleAPI = saveGoogleAPI
	}()

	googleAPI = &googleservice.GCalendarAPIStub{}

	cases := TestDataProvider{
		{
			description: "Should fail when target flag is not provided",
			args:        []string{""},
			expectedOut: "\"target\" not set",
		},
		{
			description: "Should NOT create reach-out events for a nudge target that does not exist",
			args:        []string{"--target", "missing-target"},
			expectedOut: "no contacts in 'missing-target'",
		},
		{
			description: "Should create reach-out events for contacts in the family nudge target",
			args:        []string{"--target", "family"},
			expectedOut: "appointments with members of family have been created",
		},
		{
			description: "Should NOT create reach-out events with invalid count flag",
			args:        []string{"--target", "family", "--count", "m"},
			expectedOut: "invalid argument \"m\"",
		},
		{
			description: "Should create reach-out events with valid count flag",
			args:        []string{"--target", "family", "--count", "4"},
			expectedOut: "appointments with members of family have been created",
		},
		{
			description: "Should NOT create reach-out events with freq flag > 2",
			args:        []string{"--target", "family", "--freq", "3"},
			expectedOut: "should be 0, 1, or 2",
		},
		{
			description: "Should NOT create reach-out events with freq flag < 0",
			args:        []string{"--target", "family", "--freq", "-1"},
			expectedOut: "should be 0, 1, or 2",
		},
		{
			description: "Should create reach-out events with valid freq flag",
			args:        []string{"--target", "family", "--freq", "0"},
			expectedOut: "appointments with members of family have been created",
		},
		{
			description: "Should NOT create reach-out events with invalid time-slot flag",
			args:        []string{"--target", "family", "--time-slot", "1:00-2"},
			expectedOut: "invalid argument \"1:00-2\"",
		},
		{
			description: "Should create reach-out events with valid time-slot flag",
			args:        []string{"--target", "family", "--time-slot", "1:00-1:30"},
			expectedOut: "appointments with members of family have been created",
		},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			csCmd = createCalsyncCmd()

			// Clear output buffer before the next test
			buff.Reset()

			csCmd.SetOut(buff)
			csCmd.SetErr(buff)
			csCmd.SetArgs(c.args)

			csCmd.Execute()

			actualOut = buff.String()
			if !strings.Contains(actualOut, c.expectedOut) {
				t.Errorf("Expected: \n\"%s\" \nTo contain: \n\"%s\"", actualOut, c.expectedOut)
			}
		})
	}
}
