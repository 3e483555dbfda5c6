package main

import (
	"encoding/json"
	"errors"
	"io"

	"tablerepo/internal/database"
	"tablerepo/internal/repository"
)

const (
	notFoundMessage  = "Not Found"
	executionMessage = "internal error while accessing the database"
)

// envelope is the JSON body written to stdout for every outcome.
type envelope struct {
	Data     any                  `json:"data"`
	Metadata *repository.Metadata `json:"metadata,omitempty"`
}

func writeEnvelope(w io.Writer, body envelope) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(body)
}

// writeResponse renders a successful operation. An absent row is reported
// as errNotFound after the body is written.
func writeResponse(w io.Writer, resp response) error {
	if err := writeEnvelope(w, resp.body); err != nil {
		return err
	}
	if resp.notFound {
		return errNotFound
	}
	return nil
}

// writeFailure renders err for the caller and returns it unchanged.
func writeFailure(w io.Writer, err error) error {
	_ = writeEnvelope(w, envelope{Data: publicMessage(err)})
	return err
}

// publicMessage hides store and connection detail. Validation, permission
// and configuration messages are safe to show.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, repository.ErrExecution):
		return executionMessage
	case errors.Is(err, database.ErrUnavailable):
		return "database unavailable"
	default:
		return err.Error()
	}
}
