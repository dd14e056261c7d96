// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
)

// checkLimits rejects messages that exceed the configured bounds,
// per spec.md §4.8: message size, bound-parameter count, and
// individual string/byte parameter length.
func (c *Codec) checkLimits(msg pgproto3.FrontendMessage) error {
	if err := c.checkMessageBytes(msg); err != nil {
		return err
	}
	switch m := msg.(type) {
	case *pgproto3.Query:
		return c.checkStringLen(len(m.String))
	case *pgproto3.Parse:
		if err := c.checkStringLen(len(m.Query)); err != nil {
			return err
		}
		return c.checkParamCount(len(m.ParameterOIDs))
	case *pgproto3.Bind:
		if err := c.checkParamCount(len(m.Parameters)); err != nil {
			return err
		}
		for _, p := range m.Parameters {
			if err := c.checkStringLen(len(p)); err != nil {
				return err
			}
		}
	}
	return nil
}

// frontendEncoder is every concrete pgproto3 frontend message type:
// Decode is the only method the FrontendMessage interface itself
// requires, but each type also implements Encode, which re-serializes
// the already-decoded message back to its wire bytes. Re-encoding
// gives an exact total message size without the codec needing to
// track the raw bytes pgproto3.Backend.Receive already consumed.
type frontendEncoder interface {
	Encode(dst []byte) ([]byte, error)
}

func (c *Codec) checkMessageBytes(msg pgproto3.FrontendMessage) error {
	if c.limits.MaxMessageBytes <= 0 {
		return nil
	}
	e, ok := msg.(frontendEncoder)
	if !ok {
		return nil
	}
	buf, err := e.Encode(nil)
	if err != nil {
		return nil
	}
	if len(buf) > c.limits.MaxMessageBytes {
		return errkind.New(errkind.Protocol,
			fmt.Sprintf("message of %d bytes exceeds limit of %d", len(buf), c.limits.MaxMessageBytes))
	}
	return nil
}

func (c *Codec) checkStringLen(n int) error {
	if c.limits.MaxStringBytes > 0 && n > c.limits.MaxStringBytes {
		return errkind.New(errkind.Protocol,
			fmt.Sprintf("string parameter of %d bytes exceeds limit of %d", n, c.limits.MaxStringBytes))
	}
	return nil
}

func (c *Codec) checkParamCount(n int) error {
	if c.limits.MaxParamCount > 0 && n > c.limits.MaxParamCount {
		return errkind.New(errkind.Protocol,
			fmt.Sprintf("%d bound parameters exceeds limit of %d", n, c.limits.MaxParamCount))
	}
	return nil
}
