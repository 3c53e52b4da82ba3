package bus

import (
	"fmt"
	"strings"

	"github.com/siemql/siemql/internal/config"
	"github.com/siemql/siemql/internal/pkg/errors"
	"github.com/siemql/siemql/internal/pkg/logger"
)

// NewBus creates the bus selected by cfg. When cfg.EventLog is set the bus
// also appends every published event to that file.
func NewBus(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	inner, err := newInner(cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.EventLog == "" {
		return inner, nil
	}

	el, err := NewEventLogger(cfg.EventLog, true)
	if err != nil {
		inner.Close()
		return nil, errors.Wrap(errors.CodeInternal, "opening audit log", err)
	}
	return NewLoggedBus(inner, el, log), nil
}

func newInner(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		return NewMemoryBus(log), nil

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		consumerGroup := cfg.KafkaGroup
		if consumerGroup == "" {
			consumerGroup = "siemql"
		}

		kb, err := NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			ClientID:      "siemql-audit",
		}, log)
		if err != nil {
			return nil, err
		}
		return kb, nil

	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New(errors.CodeValidation, "redis url not configured")
		}
		rb, err := NewRedisBus(cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
		return rb, nil

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}
}
