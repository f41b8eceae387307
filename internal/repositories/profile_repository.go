package repositories

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ITAMARV101/duowalk/internal/keystore"
	"github.com/ITAMARV101/duowalk/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// Record key prefixes and field names in the keyed store.
const (
	usersPrefix          = "users:"
	publicProfilesPrefix = "public_profiles:"

	fieldUsername     = "username"
	fieldPhoneNum     = "phoneNum"
	fieldUsernameKey  = "usernameKey"
	fieldPhoneHash    = "phoneHash"
	fieldSteps        = "steps"
	fieldAllTime      = "steps:allTime"
	fieldLastSync     = "steps:lastSync"
	fieldPersonalBest = "personalBest"
	fieldStreak       = "streak"

	stepsTodayPrefix = "steps:today:"
)

// ProfileRepository reads and writes the private and public profile records
// in the keyed store. Index claims are not its business; the claims package
// owns those.
type ProfileRepository struct {
	Store keystore.Store
}

func (r *ProfileRepository) SavePrivate(ctx context.Context, profile *models.UserProfile) error {
	fields := map[string]interface{}{
		fieldUsername:     profile.Username,
		fieldPhoneNum:     profile.PhoneNum,
		fieldUsernameKey:  profile.UsernameKey,
		fieldPhoneHash:    profile.PhoneHash,
		fieldAllTime:      profile.AllTimeSteps,
		fieldLastSync:     profile.LastSync,
		fieldPersonalBest: profile.PersonalBest,
		fieldStreak:       profile.Streak,
	}
	for dayKey, count := range profile.StepsByDay {
		fields[stepsTodayPrefix+dayKey] = count
	}
	return r.Store.SetFields(ctx, usersPrefix+profile.UID, fields)
}

// UpdateIdentity merges the identity fields changed by a profile edit into
// the private record.
func (r *ProfileRepository) UpdateIdentity(ctx context.Context, uid, username, phoneNum, usernameKey, phoneHash string) error {
	return r.Store.UpdateFields(ctx, usersPrefix+uid, map[string]interface{}{
		fieldUsername:    username,
		fieldPhoneNum:    phoneNum,
		fieldUsernameKey: usernameKey,
		fieldPhoneHash:   phoneHash,
	})
}

func (r *ProfileRepository) GetPrivate(ctx context.Context, uid string) (*models.UserProfile, error) {
	fields, err := r.Store.GetFields(ctx, usersPrefix+uid)
	if errors.Is(err, keystore.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	profile := &models.UserProfile{
		UID:          uid,
		Username:     fields[fieldUsername],
		PhoneNum:     fields[fieldPhoneNum],
		UsernameKey:  fields[fieldUsernameKey],
		PhoneHash:    fields[fieldPhoneHash],
		AllTimeSteps: parseInt64(fields[fieldAllTime]),
		LastSync:     parseInt64(fields[fieldLastSync]),
		PersonalBest: parseInt(fields[fieldPersonalBest]),
		Streak:       parseInt(fields[fieldStreak]),
		StepsByDay:   map[string]int{},
	}
	for name, value := range fields {
		if dayKey, ok := strings.CutPrefix(name, stepsTodayPrefix); ok {
			profile.StepsByDay[dayKey] = parseInt(value)
		}
	}
	return profile, nil
}

func (r *ProfileRepository) DeletePrivate(ctx context.Context, uid string) error {
	return r.Store.Delete(ctx, usersPrefix+uid)
}

func (r *ProfileRepository) SavePublic(ctx context.Context, profile *models.PublicProfile) error {
	return r.Store.SetFields(ctx, publicProfilesPrefix+profile.UID, map[string]interface{}{
		fieldUsername:     profile.Username,
		fieldSteps:        profile.Steps,
		fieldPersonalBest: profile.PersonalBest,
		fieldStreak:       profile.Streak,
	})
}

// UpdatePublicUsername mirrors a username change into the public projection.
func (r *ProfileRepository) UpdatePublicUsername(ctx context.Context, uid, username string) error {
	return r.Store.UpdateFields(ctx, publicProfilesPrefix+uid, map[string]interface{}{
		fieldUsername: username,
	})
}

func (r *ProfileRepository) GetPublic(ctx context.Context, uid string) (*models.PublicProfile, error) {
	fields, err := r.Store.GetFields(ctx, publicProfilesPrefix+uid)
	if errors.Is(err, keystore.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.PublicProfile{
		UID:          uid,
		Username:     fields[fieldUsername],
		Steps:        parseInt64(fields[fieldSteps]),
		PersonalBest: parseInt(fields[fieldPersonalBest]),
		Streak:       parseInt(fields[fieldStreak]),
	}, nil
}

func (r *ProfileRepository) DeletePublic(ctx context.Context, uid string) error {
	return r.Store.Delete(ctx, publicProfilesPrefix+uid)
}

// SaveSteps pushes a step snapshot as one multi-field update: the per-day
// entry, the lifetime counter and the last-sync timestamp together, mirrored
// into the public projection's steps field.
func (r *ProfileRepository) SaveSteps(ctx context.Context, uid, dayKey string, today int, allTime int64, now time.Time) error {
	err := r.Store.UpdateFields(ctx, usersPrefix+uid, map[string]interface{}{
		stepsTodayPrefix + dayKey: today,
		fieldAllTime:              allTime,
		fieldLastSync:             now.UnixMilli(),
	})
	if err != nil {
		return err
	}
	return r.Store.UpdateFields(ctx, publicProfilesPrefix+uid, map[string]interface{}{
		fieldSteps: allTime,
	})
}

// Leaderboard lists all public profiles ordered by lifetime steps, highest
// first.
func (r *ProfileRepository) Leaderboard(ctx context.Context) ([]models.PublicProfile, error) {
	keys, err := r.Store.Keys(ctx, publicProfilesPrefix+"*")
	if err != nil {
		return nil, err
	}

	entries := make([]models.PublicProfile, 0, len(keys))
	for _, key := range keys {
		uid := strings.TrimPrefix(key, publicProfilesPrefix)
		profile, err := r.GetPublic(ctx, uid)
		if errors.Is(err, ErrProfileNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *profile)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Steps != entries[j].Steps {
			return entries[i].Steps > entries[j].Steps
		}
		return entries[i].Username < entries[j].Username
	})
	return entries, nil
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
