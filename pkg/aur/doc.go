// Package aur makes an AUR helper available and installs community
// packages through it.
//
// When the helper is not on PATH it is built from its recipe: the build
// prerequisites are installed with pacman, the recipe is cloned into a
// fresh temporary directory and built with makepkg as the invoking user,
// and the resulting package files are installed with pacman as root. The
// temporary directory is removed whatever the outcome.
//
// Community packages are always installed as the invoking user; makepkg
// refuses to run as root and the helper's caches belong in the user's home.
package aur
