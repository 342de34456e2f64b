// Package domain holds the request and metadata types of the relay and the
// errors its components return.
package domain
