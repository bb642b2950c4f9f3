package database

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// ConnectNATS establishes a connection to the NATS event broker. An empty
// address is allowed and returns a nil connection; event publishing is
// optional.
func ConnectNATS(address string) (*nats.Conn, error) {
	if address == "" {
		return nil, nil
	}

	conn, err := nats.Connect(address, nats.Name("workbook-api"))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}

	return conn, nil
}
