// Package common holds process helpers shared by the launcher commands.
//
// It locates the running executable, which desktop entries point at, and
// lists other running launcher instances for diagnostics.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
