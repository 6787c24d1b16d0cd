// Command nanos boots the kernel (see package kernel) and drives its
// shell from stdin, one line in and one result out — the closest a
// hosted Go process gets to a real kernel's serial console, since
// spec.md's Non-goals exclude an actual TTY/VGA driver.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"time"

	"nanos/kernel"
	"nanos/limits"
)

func main() {
	k := kernel.Boot(kernel.DefaultConfig())

	stop := make(chan struct{})
	defer close(stop)
	go driveTimer(k, stop)

	fmt.Println("nanos ready; type a command (ls, cat, ps, meminfo, uptime, ...)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("$ ")
		if !scanner.Scan() {
			break
		}
		out := k.Shell.Run(scanner.Text())
		if out != "" {
			fmt.Println(out)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("nanos: stdin: %v", err)
	}
}

// driveTimer simulates the 100 Hz preemption timer IRQ spec.md §4.G
// describes, so ps/uptime report a moving clock even though this
// process has no real timer interrupt to hook.
func driveTimer(k *kernel.Kernel, stop <-chan struct{}) {
	period := time.Second / time.Duration(limits.TimerHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			k.Scheduler.Tick()
		case <-stop:
			return
		}
	}
}
