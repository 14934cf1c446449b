/*
	Package volrender provides types, constants and functions that have no other
	dependencies and can be used by all packages within volrender: leveled logging
	with optional log rotation, size constants and path helpers.
*/
package volrender
