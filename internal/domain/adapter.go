package domain

import "fmt"

// AdapterStatus is the status vocabulary reported by the settlement adapter.
// Both the adapter and the payment service use this type; the only translation
// into PaymentStatus is MapAdapterStatus.
type AdapterStatus string

const (
	AdapterStatusProcessing AdapterStatus = "PROCESSING"
	AdapterStatusCanceled   AdapterStatus = "CANCELED"
	AdapterStatusSucceeded  AdapterStatus = "SUCCEEDED"
)

var adapterStatusTable = map[AdapterStatus]PaymentStatus{
	AdapterStatusProcessing: PaymentStatusPending,
	AdapterStatusCanceled:   PaymentStatusDeclined,
	AdapterStatusSucceeded:  PaymentStatusApproved,
}

// MapAdapterStatus translates an adapter status. Values missing from the table
// are errors, never defaults.
func MapAdapterStatus(s AdapterStatus) (PaymentStatus, error) {
	status, ok := adapterStatusTable[s]
	if !ok {
		return "", fmt.Errorf("MapAdapterStatus: %q: %w", s, ErrUnknownStatus)
	}
	return status, nil
}

func AdapterStatuses() []AdapterStatus {
	return []AdapterStatus{AdapterStatusProcessing, AdapterStatusCanceled, AdapterStatusSucceeded}
}
