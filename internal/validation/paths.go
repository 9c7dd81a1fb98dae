package validation

import (
	"fmt"

	"github.com/pders01/fwtl/internal/config"
)

// PathHandler provides secure path operations with validation
type PathHandler struct {
	validator *FilePathValidator
}

// NewSecurePathHandler creates a path handler with secure validation
func NewSecurePathHandler() *PathHandler {
	return &PathHandler{validator: NewFilePathValidator()}
}

// NewPermissivePathHandler creates a path handler for development/testing
func NewPermissivePathHandler() *PathHandler {
	return &PathHandler{validator: NewPermissiveFilePathValidator()}
}

// SecureConfig validates the database, search index, log and players file
// paths of cfg in place. An empty optional path stays empty and disables the
// feature.
func (ph *PathHandler) SecureConfig(cfg *config.Config) error {
	db, err := ph.validator.ValidateFile(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database path: %w", err)
	}
	cfg.Database.Path = db

	if cfg.Database.SearchIndex != "" {
		idx, err := ph.validator.ValidateDirectory(cfg.Database.SearchIndex, false)
		if err != nil {
			return fmt.Errorf("search index path: %w", err)
		}
		cfg.Database.SearchIndex = idx
	}

	if cfg.Log.Path != "" {
		logPath, err := ph.validator.ValidateFile(cfg.Log.Path)
		if err != nil {
			return fmt.Errorf("log path: %w", err)
		}
		cfg.Log.Path = logPath
	}

	if cfg.Media.PlayersFile != "" {
		players, err := ph.validator.ValidateFile(cfg.Media.PlayersFile)
		if err != nil {
			return fmt.Errorf("players file path: %w", err)
		}
		cfg.Media.PlayersFile = players
	}
	return nil
}

// SecureAccounts normalizes the instance URL of every configured account.
func SecureAccounts(cfg *config.Config, urls *URLValidator) error {
	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		normalized, err := urls.InstanceURL(acc.InstanceURL)
		if err != nil {
			return fmt.Errorf("account %d (%s): %w", acc.ID, acc.Name, err)
		}
		acc.InstanceURL = normalized
	}
	return nil
}
