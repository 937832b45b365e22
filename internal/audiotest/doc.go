// SPDX-License-Identifier: EPL-2.0

// Package audiotest provides test doubles: an in-memory platform whose
// buffer queues are driven by the test, and synthetic 16-bit sources.
package audiotest
