package repository

import "testing"

func TestRepositoryError(t *testing.T) {
	err := &RepositoryError{
		Code:    "UPSERT_FAILED",
		Message: "Failed to archive settlement",
		Detail:  "connection refused",
	}

	want := "UPSERT_FAILED: Failed to archive settlement - connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
