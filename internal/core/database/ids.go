package db

import "github.com/google/uuid"

func newRowID() string { return uuid.NewString() }
