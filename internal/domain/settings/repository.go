package settings

import "context"

type Repository interface {
	List(ctx context.Context) ([]PlatformSetting, error)
	Put(ctx context.Context, key, value string) error
}
