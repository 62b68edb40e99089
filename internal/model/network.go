package model

import (
	"errors"
	"strings"
)

// Canonical mobile network identifiers used when talking to providers.
const (
	NetworkMTN     = "mtn"
	NetworkGlo     = "glo"
	NetworkAirtel  = "airtel"
	Network9Mobile = "9mobile"
)

var ErrUnknownNetwork = errors.New("unknown network")

var networkAliases = map[string]string{
	"mtn":       NetworkMTN,
	"mtn ng":    NetworkMTN,
	"glo":       NetworkGlo,
	"glo ng":    NetworkGlo,
	"airtel":    NetworkAirtel,
	"airtel ng": NetworkAirtel,
	"9mobile":   Network9Mobile,
	"etisalat":  Network9Mobile, // pre-rebrand name still sent by old clients
}

// NormalizeNetwork maps a free-form network name to its canonical
// provider identifier. Unrecognized names are a validation failure; the
// caller must abort before touching the wallet.
func NormalizeNetwork(name string) (string, error) {
	n, ok := networkAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", ErrUnknownNetwork
	}
	return n, nil
}
