// Package settings keeps tunable pipeline policy in the database.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	KeyAutoInviteScreening = "auto_invite_screening"
	KeyAutoInviteThreshold = "auto_invite_threshold"
)

// Defaults are returned for keys that were never written.
var Defaults = map[string]string{
	KeyAutoInviteScreening: "false",
	KeyAutoInviteThreshold: "75",
}

// KV is the persistence the store needs.
type KV interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string, at time.Time) error
}

type Settings struct {
	AutoInviteScreening bool `mapstructure:"auto_invite_screening" json:"auto_invite_screening"`
	AutoInviteThreshold int  `mapstructure:"auto_invite_threshold" json:"auto_invite_threshold"`
}

// Store reads and writes settings. Values are not range checked here.
type Store struct {
	kv  KV
	now func() time.Time
}

func New(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Get returns the stored value of key, its default, or "" for unknown keys.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, ok, err := s.kv.Setting(ctx, key)
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	if ok {
		return value, nil
	}
	return Defaults[key], nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.kv.PutSetting(ctx, key, value, s.now().UTC()); err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// Load decodes all known settings into Settings.
func (s *Store) Load(ctx context.Context) (*Settings, error) {
	raw := make(map[string]string, len(Defaults))
	for key := range Defaults {
		value, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		raw[key] = value
	}

	var out Settings
	if err := mapstructure.WeakDecode(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return &out, nil
}

// Save writes every field of v.
func (s *Store) Save(ctx context.Context, v Settings) error {
	if err := s.Set(ctx, KeyAutoInviteScreening, strconv.FormatBool(v.AutoInviteScreening)); err != nil {
		return err
	}
	return s.Set(ctx, KeyAutoInviteThreshold, strconv.Itoa(v.AutoInviteThreshold))
}
