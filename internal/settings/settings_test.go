package settings

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
	"github.com/kanzleiwerk/aktenregister/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s := NewStore(st, nil)
	s.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestGetAll_ReturnsSeededDefaults(t *testing.T) {
	s := newTestStore(t)

	values, err := s.GetAll(context.Background())
	require.NoError(t, err)

	// Every registered key answers from first boot.
	for key := range registry {
		assert.Contains(t, values, key)
	}
}

func TestUpdate_AppliesBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	values, err := s.Update(ctx, map[string]string{
		"fee_base_rate": "210.50",
		"office_email":  "kanzlei@example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, "210.50", values["fee_base_rate"])
	assert.Equal(t, "kanzlei@example.org", values["office_email"])

	// The returned map is the full reloaded configuration.
	assert.Contains(t, values, "vat_percent")

	reloaded, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, values, reloaded)
}

func TestUpdate_UnknownKeyRejected(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update(context.Background(), map[string]string{"mystery_key": "1"})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.CodeUnknownKey, e.Code)
	assert.Equal(t, "mystery_key", e.Field)
}

func TestUpdate_InvalidValuesRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		changes map[string]string
		field   string
	}{
		{"non-numeric fee", map[string]string{"fee_base_rate": "abc"}, "fee_base_rate"},
		{"negative rate", map[string]string{"fee_hourly_rate": "-1"}, "fee_hourly_rate"},
		{"bad email", map[string]string{"office_email": "not-an-address"}, "office_email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Update(ctx, tt.changes)
			require.Error(t, err)

			var e *apperr.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, apperr.KindValidation, e.Kind)
			assert.Equal(t, tt.field, e.Field)
		})
	}
}

func TestUpdate_InvalidBatchIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before, err := s.GetAll(ctx)
	require.NoError(t, err)

	// One valid and one invalid change: nothing may be applied.
	_, err = s.Update(ctx, map[string]string{
		"fee_base_rate": "300",
		"office_email":  "broken",
	})
	require.Error(t, err)

	after, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a failed batch must leave every prior value untouched")
}

func TestUpdate_FirstOffendingKeyIsStable(t *testing.T) {
	s := newTestStore(t)

	// Two offending keys: validation names the alphabetically first so the
	// error is deterministic across runs.
	for i := 0; i < 5; i++ {
		_, err := s.Update(context.Background(), map[string]string{
			"vat_percent":   "oops",
			"billing_email": "oops",
		})
		require.Error(t, err)

		var e *apperr.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "billing_email", e.Field)
	}
}
