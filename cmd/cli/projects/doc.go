// Package projects builds the propaudit commands that audit, watch, clean, and
// register plugin projects discovered under filesystem or remote roots.
package projects
