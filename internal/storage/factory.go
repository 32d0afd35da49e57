package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/storage/badger"
	"github.com/Alash95/reporter/internal/storage/file"
)

// NewDocumentStore creates a document store based on config
func NewDocumentStore(logger arbor.ILogger, config *common.Config) (interfaces.DocumentStore, error) {
	switch config.Storage.Type {
	case "badger", "":
		return badger.NewStore(logger, &config.Storage.Badger)
	case "file":
		return file.NewStore(logger, config.Storage.File.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (supported: badger, file)", config.Storage.Type)
	}
}
