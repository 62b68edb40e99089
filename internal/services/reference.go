package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nimasrn/vtu-gateway/internal/model"
)

var referencePrefixes = map[model.ServiceType]string{
	model.ServiceAirtime:     "AIR",
	model.ServiceData:        "DAT",
	model.ServiceCable:       "CAB",
	model.ServiceElectricity: "ELE",
	model.ServiceExamPin:     "EXM",
}

// NewReference generates the unique reference for one purchase attempt.
// References are never reused: a retried purchase is a new attempt with
// a new reference.
func NewReference(svc model.ServiceType) string {
	prefix, ok := referencePrefixes[svc]
	if !ok {
		prefix = "TRX"
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), id)
}
