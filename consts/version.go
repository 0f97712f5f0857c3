// Package consts holds build-time values
package consts

// Version is set at build time with -ldflags "-X github.com/johnstarich/uiwatch/consts.Version=v1.2.3"
var Version = "dev"
