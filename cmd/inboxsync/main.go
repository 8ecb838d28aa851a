package main

import "github.com/lu-zhengda/inboxsync/internal/cli"

func main() {
	cli.Execute()
}
