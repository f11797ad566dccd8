package main

import "github.com/mixelpixx/KiCAD-MCP-Server/cmd/kicad-sch/cmd"

func main() {
	cmd.Execute()
}
