package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap is the root of configs/config.yaml.
type Bootstrap struct {
	Server  *Server  `json:"server"`
	Data    *Data    `json:"data"`
	Billing *Billing `json:"billing"`
	Dodo    *Dodo    `json:"dodo"`
	Auth    *Auth    `json:"auth"`
	Log     *Log     `json:"log"`
}

type Server struct {
	HTTP *Transport `json:"http"`
}

type Transport struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
	Rocketmq *Rocketmq `json:"rocketmq"`
}

type Database struct {
	// Driver is "mysql" (default) or "postgres".
	Driver          string    `json:"driver"`
	Source          string    `json:"source"`
	AutoMigrate     bool      `json:"auto_migrate"`
	MaxOpenConns    int       `json:"max_open_conns"`
	MaxIdleConns    int       `json:"max_idle_conns"`
	ConnMaxLifetime *Duration `json:"conn_max_lifetime"`
}

type Redis struct {
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	DB           int       `json:"db"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

type Rocketmq struct {
	Enabled     bool     `json:"enabled"`
	NameServers []string `json:"name_servers"`
	GroupName   string   `json:"group_name"`
	Topic       string   `json:"topic"`
	RetryTimes  int32    `json:"retry_times"`
}

// Billing holds the ledger settings. Product ids come from the payment provider dashboard.
type Billing struct {
	InternalKey        string    `json:"internal_key"`
	CreditCostUSD      string    `json:"credit_cost_usd"`
	InputTokenCostUSD  string    `json:"input_token_cost_usd"`
	OutputTokenCostUSD string    `json:"output_token_cost_usd"`
	ResetBatchSize     int       `json:"reset_batch_size"`
	LockExpiry         *Duration `json:"lock_expiry"`
	ResetLockExpiry    *Duration `json:"reset_lock_expiry"`
	Products           *Products `json:"products"`
}

type Products struct {
	Starter          string `json:"starter"`
	Pro              string `json:"pro"`
	Scale            string `json:"scale"`
	CreditPackSmall  string `json:"credit_pack_small"`
	CreditPackMedium string `json:"credit_pack_medium"`
	CreditPackLarge  string `json:"credit_pack_large"`
}

type Dodo struct {
	APIKey           string    `json:"api_key"`
	Environment      string    `json:"environment"`
	WebhookSecret    string    `json:"webhook_secret"`
	WebhookTolerance *Duration `json:"webhook_tolerance"`
	Timeout          *Duration `json:"timeout"`
	ReturnURL        string    `json:"return_url"`
}

type Auth struct {
	// JWTPublicKey is the PEM encoded RS256 key used to verify session tokens.
	JWTPublicKey string `json:"jwt_public_key"`
	Issuer       string `json:"issuer"`
}

type Log struct {
	Level         string `json:"level"`
	Format        string `json:"format"`
	Output        string `json:"output"`
	FilePath      string `json:"file_path"`
	MaxSize       int    `json:"max_size"`
	MaxAge        int    `json:"max_age"`
	MaxBackups    int    `json:"max_backups"`
	Compress      bool   `json:"compress"`
	EnableConsole bool   `json:"enable_console"`
}

// Duration decodes "1.5s" style strings as well as integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		if value == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// AsDuration returns the wrapped value, zero for a nil receiver.
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}
