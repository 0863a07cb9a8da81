package curl

import "time"

// Resource kinds reported to an Observer.
const (
	ResourceHandle  = "handle"
	ResourceHeaders = "headers"
	ResourceVerbose = "verbose"
)

// Observer is told about every exchange and every resource it holds.
type Observer interface {
	ExchangeDone(method Method, status int, elapsed time.Duration, err error)
	ResourceOpened(kind string)
	ResourceClosed(kind string)
}

type nopObserver struct{}

func (nopObserver) ExchangeDone(Method, int, time.Duration, error) {}
func (nopObserver) ResourceOpened(string)                          {}
func (nopObserver) ResourceClosed(string)                          {}
