package proto

import (
	"fmt"
)

// Status is the delivery state of a message. The zero value is StatusSent.
type Status uint8

const (
	StatusSent Status = iota
	StatusDelivered
	StatusRead
)

var statusNames = [...]string{
	StatusSent:      "sent",
	StatusDelivered: "delivered",
	StatusRead:      "read",
}

func (s Status) Valid() bool {
	return int(s) < len(statusNames)
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("status(%d)", uint8(s))
	}
	return statusNames[s]
}

// ParseStatus parses the wire name of a status.
func ParseStatus(name string) (Status, error) {
	for i, v := range statusNames {
		if v == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
