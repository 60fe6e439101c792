package main

func defaultEditor() string {
	return "notepad"
}
