// Package scan runs the passive access point survey of scan mode.
package scan
