// Structured result records. Every stage command prints exactly one record
// to stdout, success or failure; the dashboard parses it.
package cobra

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
)

type resultRecord struct {
	Status  string       `json:"status"` // "ok" or "error"
	Payload any          `json:"payload,omitempty"`
	Error   *errorRecord `json:"error,omitempty"`
}

type errorRecord struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// emitOK prints a success record.
func emitOK(w io.Writer, payload any) {
	write(w, resultRecord{Status: "ok", Payload: payload})
}

// emitError prints a failure record. The payload is omitted; abort-level
// failures carry only the marked error field.
func emitError(w io.Writer, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.EInternal
	}
	write(w, resultRecord{
		Status: "error",
		Error:  &errorRecord{Code: string(code), Message: err.Error()},
	})
}

func write(w io.Writer, rec resultRecord) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		fmt.Fprintf(w, `{"status":"error","error":{"code":"E_INTERNAL","message":"failed to encode result"}}`+"\n")
		return
	}
	fmt.Fprintln(w, string(data))
}

// run wraps a stage function: the structured record always goes to stdout,
// and the error is still returned so main.go prints context and sets the
// exit code.
func run(w io.Writer, fn func() (any, error)) error {
	payload, err := fn()
	if err != nil {
		emitError(w, err)
		return err
	}
	emitOK(w, payload)
	return nil
}
