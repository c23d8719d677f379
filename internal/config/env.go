package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "SEPA"

// envOverrides lists the settings that may come from the environment,
// e.g. SEPA_CLUB_IBAN. Unset variables leave the YAML value alone.
type envOverrides struct {
	ClubName        string `envconfig:"CLUB_NAME"`
	ClubIBAN        string `envconfig:"CLUB_IBAN"`
	ClubBIC         string `envconfig:"CLUB_BIC"`
	CreditorID      string `envconfig:"CREDITOR_ID"`
	Purpose         string `envconfig:"PURPOSE"`
	MandatePrefix   string `envconfig:"MANDATE_PREFIX"`
	DefaultFee      string `envconfig:"DEFAULT_FEE"`
	LeadDays        *int   `envconfig:"LEAD_DAYS"`
	PrefixMandateID *bool  `envconfig:"PREFIX_MANDATE_ID"`

	LogLevel  string `envconfig:"LOG_LEVEL"`
	OutputDir string `envconfig:"OUTPUT_DIR"`
	Addr      string `envconfig:"ADDR"`
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}

	return nil
}

// ApplyEnv merges SEPA_* environment variables into config.
func ApplyEnv(config *MainConfig) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	setString(&config.Club.Name, env.ClubName)
	setString(&config.Club.IBAN, env.ClubIBAN)
	setString(&config.Club.BIC, strings.ToUpper(env.ClubBIC))
	setString(&config.Club.CreditorID, env.CreditorID)
	setString(&config.Club.Purpose, env.Purpose)
	setString(&config.Club.MandateReferencePrefix, env.MandatePrefix)
	setString(&config.LogLevel, env.LogLevel)
	setString(&config.OutputDir, env.OutputDir)
	setString(&config.Server.Addr, env.Addr)

	if env.DefaultFee != "" {
		fee, err := decimal.NewFromString(strings.Replace(env.DefaultFee, ",", ".", 1))
		if err != nil {
			return fmt.Errorf("%s_DEFAULT_FEE: %w", EnvPrefix, err)
		}
		config.Club.DefaultFee = fee
	}
	if env.LeadDays != nil {
		config.Club.ExecutionLeadDays = *env.LeadDays
	}
	if env.PrefixMandateID != nil {
		config.Club.PrefixMandateID = *env.PrefixMandateID
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
