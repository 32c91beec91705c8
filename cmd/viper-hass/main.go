package main

import "github.com/viper-hass/viper-hass/internal/cmd"

func main() {
	cmd.Execute()
}
