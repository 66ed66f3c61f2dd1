package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// TierEntry carries the entitlements of one purchasable tier.
type TierEntry struct {
	MonthlyQuotaLimit int      `mapstructure:"monthlyQuotaLimit"`
	PeriodDays        int      `mapstructure:"periodDays"`
	AmountFen         int64    `mapstructure:"amountFen"`
	Features          []string `mapstructure:"features"`
}

// TierCatalog is the purchasable plan catalog keyed by tier name.
type TierCatalog struct {
	Tiers map[string]TierEntry `mapstructure:"tiers"`
}

func DefaultTierCatalog() TierCatalog {
	return TierCatalog{
		Tiers: map[string]TierEntry{
			"basic": {
				MonthlyQuotaLimit: 300,
				PeriodDays:        30,
				AmountFen:         2900,
				Features:          []string{"create", "reuse", "export"},
			},
			"pro": {
				MonthlyQuotaLimit: 1000,
				PeriodDays:        30,
				AmountFen:         9900,
				Features:          []string{"create", "reuse", "export", "graph_nodes"},
			},
			"admin": {
				MonthlyQuotaLimit: 1000000,
				PeriodDays:        365,
				AmountFen:         0,
				Features:          []string{"create", "reuse", "export", "graph_nodes"},
			},
		},
	}
}

type TierCatalogHolder struct {
	current atomic.Value // holds TierCatalog
}

func NewTierCatalogHolder() (*TierCatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/inspira/config") // Volume-mounted config
	v.AddConfigPath("/etc/inspira")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("INSPIRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, use defaults
		defaults := DefaultTierCatalog()
		v.SetDefault("plans.tiers", defaults.Tiers)
	}

	var catalog TierCatalog
	if err := v.UnmarshalKey("plans", &catalog); err != nil {
		return nil, err
	}
	if err := validateTierCatalog(catalog); err != nil {
		return nil, err
	}

	holder := &TierCatalogHolder{}
	holder.current.Store(catalog)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated TierCatalog
		if err := v.UnmarshalKey("plans", &updated); err != nil {
			log.Printf("[plan-catalog] reload failed: %v", err)
			return
		}
		if err := validateTierCatalog(updated); err != nil {
			log.Printf("[plan-catalog] invalid catalog ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-catalog] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticTierCatalogHolder wraps a fixed catalog without file watching.
func NewStaticTierCatalogHolder(catalog TierCatalog) (*TierCatalogHolder, error) {
	if err := validateTierCatalog(catalog); err != nil {
		return nil, err
	}
	holder := &TierCatalogHolder{}
	holder.current.Store(catalog)
	return holder, nil
}

func (h *TierCatalogHolder) Get() TierCatalog {
	return h.current.Load().(TierCatalog)
}

func validateTierCatalog(catalog TierCatalog) error {
	if len(catalog.Tiers) == 0 {
		return errors.New("plans.tiers cannot be empty")
	}
	for name, entry := range catalog.Tiers {
		if entry.MonthlyQuotaLimit <= 0 {
			return fmt.Errorf("plans.tiers.%s: monthlyQuotaLimit must be positive", name)
		}
		if entry.PeriodDays <= 0 {
			return fmt.Errorf("plans.tiers.%s: periodDays must be positive", name)
		}
		if entry.AmountFen < 0 {
			return fmt.Errorf("plans.tiers.%s: amountFen cannot be negative", name)
		}
	}
	return nil
}
