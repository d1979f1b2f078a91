package utils

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/moneymap/fintrack_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// store a per-user list under "<Type>List:<userId>"
func StoreRedisList[T any](obj any, userId string) error {
	var key string
	if userId == "" {
		key = GetTypeName[T]() + "List"
	} else {
		key = GetTypeName[T]() + "List:" + userId
	}
	return config.SetRedisObject(key, &obj, GetCacheLifespan())
}

// get a per-user list from redis
// returns nil if it does not exist
func RetrieveRedisList[T any](userId string) ([]T, error) {
	var result []T
	var key string
	if userId == "" {
		key = GetTypeName[T]() + "List"
	} else {
		key = GetTypeName[T]() + "List:" + userId
	}
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// drop a per-user cached list, on mutation of the underlying records
func ClearRedisList[T any](userId string) error {
	var key string
	if userId == "" {
		key = GetTypeName[T]() + "List"
	} else {
		key = GetTypeName[T]() + "List:" + userId
	}
	return config.RemoveRedisKey(key)
}
