package flow

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
