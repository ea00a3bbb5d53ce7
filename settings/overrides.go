// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package settings

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Well known setting names that override process configuration.
const (
	DBRetries                   = "DBRetries"
	DBRetryDelay                = "DBRetryDelay"
	AzureRetries                = "AzureRetries"
	AzureRetryDelay             = "AzureRetryDelay"
	AbandonedTransactionTimeout = "AbandonedTransactionTimeout"
	AzureDefaultContainerName   = "AzureDefaultContainerName"
	LoggingLevel                = "LoggingLevel"
)

// ApplyCount overrides dst with the named setting when it holds an integer.
// Negative values clamp to zero.
func (service *Service) ApplyCount(name string, dst *int) {
	raw, ok := service.GetValue(name)
	if !ok {
		return
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		service.log.Warn("ignoring invalid setting", zap.String("name", name), zap.String("value", raw))
		return
	}
	if value < 0 {
		value = 0
	}
	*dst = value
}

// ApplyDuration overrides dst with the named setting, a number of units.
// Negative values clamp to zero.
func (service *Service) ApplyDuration(name string, unit time.Duration, dst *time.Duration) {
	value, ok := service.number(name)
	if !ok {
		return
	}
	if value < 0 {
		value = 0
	}
	*dst = time.Duration(value * float64(unit))
}

// ApplyBackoff overrides dst with the named setting, a number of units
// counted backwards from now. "-30" and "30" both mean 30 units ago.
func (service *Service) ApplyBackoff(name string, unit time.Duration, dst *time.Duration) {
	value, ok := service.number(name)
	if !ok {
		return
	}
	if value < 0 {
		value = -value
	}
	*dst = time.Duration(value * float64(unit))
}

func (service *Service) number(name string) (float64, bool) {
	raw, ok := service.GetValue(name)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		service.log.Warn("ignoring invalid setting", zap.String("name", name), zap.String("value", raw))
		return 0, false
	}
	return value, true
}

// ApplyString overrides dst with the named setting when it is not empty.
func (service *Service) ApplyString(name string, dst *string) {
	raw, ok := service.GetValue(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	*dst = strings.TrimSpace(raw)
}
