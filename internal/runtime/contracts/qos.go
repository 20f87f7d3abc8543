package contracts

import (
	"fmt"
	"strings"
)

// Qos is the delivery guarantee of a channel. The zero value means the
// channel did not declare one.
type Qos uint8

const (
	QosUnset Qos = iota
	QosBestEffort
	QosGuaranteed
)

func (q Qos) String() string {
	switch q {
	case QosBestEffort:
		return "best_effort"
	case QosGuaranteed:
		return "guaranteed"
	default:
		return "unset"
	}
}

// ParseQos accepts "guaranteed", "best_effort" and their common spellings.
// An empty string yields QosUnset.
func ParseQos(s string) (Qos, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return QosUnset, nil
	case "guaranteed":
		return QosGuaranteed, nil
	case "best_effort", "besteffort", "best-effort":
		return QosBestEffort, nil
	}
	return QosUnset, fmt.Errorf("unknown qos %q", s)
}

func (q Qos) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

func (q *Qos) UnmarshalText(text []byte) error {
	parsed, err := ParseQos(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
