// Package config loads issuetrend settings from .issuetrend.yaml, the
// environment and defaults.
package config

import (
	"github.com/Sumatoshi-tech/issuetrend/pkg/fingerprint"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/notify"
	"github.com/Sumatoshi-tech/issuetrend/pkg/store"
)

// Health defaults.
const (
	DefaultHealthEnabled   = false
	DefaultHealthHealthy   = 0
	DefaultHealthUnhealthy = 0
)

// Fingerprint defaults.
const (
	DefaultFingerprintContextLines = fingerprint.DefaultContextLines
	DefaultFingerprintSourceRoot   = "."
	DefaultFingerprintMaxFileSize  = "1MiB"
)

// History defaults.
const (
	DefaultHistoryPolicy       = string(history.PolicyPrevious)
	DefaultHistoryMaxDepth     = history.DefaultMaxDepth
	DefaultHistoryCacheEntries = history.DefaultCacheEntries
	DefaultHistoryTrendLength  = 20
)

// Blame defaults.
const (
	DefaultBlameEnabled    = false
	DefaultBlameRepository = "."
	DefaultBlameWorkers    = 4
)

// Filter defaults.
const (
	DefaultFilterVendored = true
)

// Store defaults.
const (
	DefaultStoreBackend = store.BackendFile
	DefaultStoreDir     = store.DefaultDir
)

// Notify defaults.
const (
	DefaultNotifySubject = notify.DefaultSubject
)

// Observability defaults.
const (
	DefaultLogLevel    = "info"
	DefaultSampleRatio = 1.0
)
