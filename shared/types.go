package shared

type ServerConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres" validate:"required"`
	Nudged   NudgedConfig   `mapstructure:"nudged" validate:"required"`
	Twilio   TwilioConfig   `mapstructure:"twilio"`
	Google   GoogleConfig   `mapstructure:"google"`
}

type PostgresConfig struct {
	Dsn string `mapstructure:"dsn" validate:"required"`
}

type NudgedConfig struct {
	AppURL        string         `mapstructure:"appUrl"`
	PrivateKeyPem string         `mapstructure:"privateKeyPem"`
	Cron          CronConfig     `mapstructure:"cron" validate:"required"`
	Listener      ListenerConfig `mapstructure:"listener" validate:"required"`
}

type TwilioConfig struct {
	AccountSid          string `mapstructure:"accountSid"`
	AuthToken           string `mapstructure:"authToken"`
	MessagingServiceSid string `mapstructure:"messagingServiceSid"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type CronConfig struct {
	TimeZone string `mapstructure:"timeZone" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

type StorageConfig struct {
	Bucket             string      `mapstructure:"bucket" validate:"required_with=EnableImageUploads"`
	Prefix             string      `mapstructure:"prefix"`
	EnableImageUploads interface{} `mapstructure:"enableImageUploads" validate:"omitempty,bool"`
}
