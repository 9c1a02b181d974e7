package serialmux

import (
	"fmt"
)

// Commander is the write side of a camera link.
type Commander interface {
	SendCommand(string) error
}

// Camera drives a bridge over a link. It satisfies the pipeline's camera
// controller.
type Camera struct {
	link Commander
}

// NewCamera returns a Camera writing commands to link.
func NewCamera(link Commander) *Camera {
	return &Camera{link: link}
}

// StartCamera sends "START <fps>".
func (c *Camera) StartCamera(fps int) error {
	if fps <= 0 {
		return fmt.Errorf("start camera: invalid frame rate %d", fps)
	}
	return c.link.SendCommand(fmt.Sprintf("%s %d", CommandStart, fps))
}

// StopCamera sends "STOP".
func (c *Camera) StopCamera() error {
	return c.link.SendCommand(CommandStop)
}

// ResumeCamera sends "RESUME <frames>".
func (c *Camera) ResumeCamera(frames int) error {
	if frames <= 0 {
		return fmt.Errorf("resume camera: invalid frame count %d", frames)
	}
	return c.link.SendCommand(fmt.Sprintf("%s %d", CommandResume, frames))
}
