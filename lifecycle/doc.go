// Package lifecycle provides component lifecycle management for Go applications.
//
// It defines interfaces and utilities for managing the startup and shutdown
// of application components, including start and stop ordering between
// components that depend on each other.
package lifecycle

import "oss.nandlabs.io/enginecore/l3"

var logger = l3.Get()
