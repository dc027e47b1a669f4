package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			User:     "bugtracker",
			Password: "secret",
			DBName:   "bugtracker",
		},
		Mail: MailConfig{
			IMAPHost:     "imap.example.com",
			IMAPPort:     993,
			IMAPUser:     "bugs@example.com",
			IMAPPassword: "app-password",
			Mailbox:      "INBOX",
		},
		Scheduler: SchedulerConfig{IntervalMinutes: 5, MaxRetries: 3},
	}
}

func TestValidateValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateMissingServerPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateMissingDatabaseFields(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Host = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Database.User = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Database.DBName = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateIMAPCredentialsRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Mail.IMAPPassword = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateGmailCredentialsRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Mail.UseGmailAPI = true
	assert.Error(t, cfg.Validate(), "OAuth2 credentials missing")

	cfg.Mail.ClientID = "client-id"
	cfg.Mail.ClientSecret = "client-secret"
	cfg.Mail.RefreshToken = "refresh-token"
	cfg.Mail.UserEmail = "bugs@example.com"
	assert.NoError(t, cfg.Validate())
}

func TestValidateSchedulerInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.IntervalMinutes = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Scheduler.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}

func TestGetDSN(t *testing.T) {
	cfg := validConfig()
	expected := "bugtracker:secret@tcp(localhost:3306)/bugtracker?charset=utf8mb4&parseTime=True&loc=Local"
	assert.Equal(t, expected, cfg.Database.GetDSN())
}
