package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage"
)

func TestDuplicateKeyError(t *testing.T) {
	row := &domain.RiskScoreRecord{DatasetID: "ds1", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}

	tests := []struct {
		name    string
		err     error
		wantDup bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505", TableName: "risk_scores", ConstraintName: "risk_scores_pkey"}, true},
		{"wrapped unique violation", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}), true},
		{"other table", &pgconn.PgError{Code: "23505", TableName: "instrument_features"}, false},
		{"not null violation", &pgconn.PgError{Code: "23502", TableName: "risk_scores"}, false},
		{"plain error", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := duplicateKeyError(tt.err, storage.ScoreDuplicate(row))
			if !tt.wantDup {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, storage.ErrDuplicateKey)
		})
	}

	var dup *storage.DuplicateKeyError
	err := duplicateKeyError(&pgconn.PgError{Code: "23505", TableName: "risk_scores", ConstraintName: "risk_scores_pkey"}, storage.ScoreDuplicate(row))
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "risk_scores_pkey", dup.Constraint)
	assert.Equal(t, "2024-03-01", dup.Key)
}
