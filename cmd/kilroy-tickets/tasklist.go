package main

import (
	"fmt"
	"os"

	"github.com/kilroy-tickets/kilroy/internal/workflow/tasklist"
)

func tasklistCmd(args []string) {
	if len(args) < 2 {
		usage()
		os.Exit(1)
	}
	path := args[1]
	switch args[0] {
	case "parse":
		tasklistParse(path)
	case "format":
		tasklistFormat(path)
	default:
		usage()
		os.Exit(1)
	}
}

func tasklistParse(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		exitWithErr(err)
	}
	tasks := tasklist.Parse(string(content))
	for _, t := range tasks {
		fmt.Printf("[%s] %s (%s, group=%s)\n", t.Status, t.Name, t.Category, t.GroupTag)
	}
	fmt.Printf("%d total, %d pending, %d complete\n",
		len(tasks), len(tasklist.GetPendingTasks(tasks)), len(tasklist.GetCompletedTasks(tasks)))
}

func tasklistFormat(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		exitWithErr(err)
	}
	tasks := tasklist.Parse(string(content))
	fmt.Print(tasklist.Format(tasks))
}
