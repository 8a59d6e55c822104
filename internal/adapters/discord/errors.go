package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// APIError resume un error REST de Discord.
type APIError struct {
	Op     string
	Status int
	Code   int
	Body   string
	err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord %s: status %d code %d: %s", e.Op, e.Status, e.Code, e.Body)
}

func (e *APIError) Unwrap() error { return e.err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Response != nil {
		ae := &APIError{Op: op, Status: re.Response.StatusCode, Body: string(re.ResponseBody), err: err}
		if re.Message != nil {
			ae.Code = re.Message.Code
		}
		return ae
	}
	return fmt.Errorf("discord %s: %w", op, err)
}
