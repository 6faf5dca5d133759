package dberrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "subjects_code_active_key"}
	pqErr := &pq.Error{Code: "23505", Constraint: "faculty_subjects_active_pair_key"}

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"pgx match", pgErr, "subjects_code_active_key", true},
		{"pgx wrapped", fmt.Errorf("insert subject: %w", pgErr), "subjects_code_active_key", true},
		{"pgx other constraint", pgErr, "users_email_key", false},
		{"pgx any constraint", pgErr, "", true},
		{"pq match", pqErr, "faculty_subjects_active_pair_key", true},
		{"pq other code", &pq.Error{Code: "23503", Constraint: "faculty_subjects_active_pair_key"}, "faculty_subjects_active_pair_key", false},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUniqueViolation(tc.err, tc.constraint))
		})
	}
}
