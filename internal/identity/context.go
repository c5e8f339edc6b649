package identity

import "context"

type ctxKey string

const doctorKey ctxKey = "opdflow.doctor_id"

// WithDoctorID stores the authenticated doctor id in context.
func WithDoctorID(ctx context.Context, doctorID string) context.Context {
	return context.WithValue(ctx, doctorKey, doctorID)
}

// DoctorIDFromContext extracts the doctor id if present.
func DoctorIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(doctorKey)
	if val == nil {
		return "", false
	}
	doctorID, ok := val.(string)
	return doctorID, ok && doctorID != ""
}
