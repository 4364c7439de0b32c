// Package infra contains technical adapters such as dataset readers,
// metrics exporters and the logger implementation. These packages should
// depend only on the interfaces and types defined in the core packages.
package infra
