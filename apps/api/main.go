package main

// TODO: rate limit PUT /v1/classes/:id/whiteboard per class
func main() {
	startWithDig()
}
