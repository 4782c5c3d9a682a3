package httpapi

import (
	"io"
	"log/slog"
)

const unseenID = "00000000000000000000000000000000000000000000000000000000000000"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
