package recordcache

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const observationPrefix = "train"

// Key is one of ObservationKey, RouteMetadataKey, LastRefreshKey or
// SchemaVersionKey. Only ObservationKey is subject to the retention sweep.
type Key interface {
	StorageKey() string
	isKey()
}

type ObservationKey struct {
	Date        string
	TrainNumber int
}

type RouteMetadataKey struct{}

type LastRefreshKey struct{}

type SchemaVersionKey struct{}

func (ObservationKey) isKey()   {}
func (RouteMetadataKey) isKey() {}
func (LastRefreshKey) isKey()   {}
func (SchemaVersionKey) isKey() {}

func (k ObservationKey) StorageKey() string {
	return fmt.Sprintf("%s:%s:%d", observationPrefix, k.Date, k.TrainNumber)
}

func (RouteMetadataKey) StorageKey() string {
	return observationPrefix + ":route:snapshot"
}

func (LastRefreshKey) StorageKey() string {
	return observationPrefix + ":route:fetched"
}

func (SchemaVersionKey) StorageKey() string {
	return "app:version"
}

// ParseKey maps a storage key back to its variant
func ParseKey(storageKey string) (Key, bool) {
	switch storageKey {
	case RouteMetadataKey{}.StorageKey():
		return RouteMetadataKey{}, true
	case LastRefreshKey{}.StorageKey():
		return LastRefreshKey{}, true
	case SchemaVersionKey{}.StorageKey():
		return SchemaVersionKey{}, true
	}

	parts := strings.Split(storageKey, ":")
	if len(parts) != 3 || parts[0] != observationPrefix {
		return nil, false
	}

	if _, err := time.Parse("2006-01-02", parts[1]); err != nil {
		return nil, false
	}

	trainNumber, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, false
	}

	return ObservationKey{Date: parts[1], TrainNumber: trainNumber}, true
}
