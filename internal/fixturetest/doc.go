// Package fixturetest runs JSON fixture files through the server discovery test binary.
package fixturetest
