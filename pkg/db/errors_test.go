package db

import (
	"errors"
	"testing"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name:       "postgres named constraint",
			err:        errors.New(`duplicate key value violates unique constraint "idx_orders_identifier"`),
			constraint: "idx_orders_identifier",
			want:       true,
		},
		{
			name:       "sqlite message without constraint name",
			err:        errors.New("UNIQUE constraint failed: orders.identifier"),
			constraint: "idx_orders_identifier",
			want:       true,
		},
		{
			name: "generic postgres duplicate",
			err:  errors.New("duplicate key value violates unique constraint"),
			want: true,
		},
		{
			name:       "unrelated error",
			err:        errors.New("connection refused"),
			constraint: "idx_orders_identifier",
			want:       false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("IsUniqueViolation(%v, %q) = %v, want %v", tc.err, tc.constraint, got, tc.want)
			}
		})
	}
}
