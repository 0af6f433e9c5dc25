package main

import (
	"errors"

	"github.com/sweeney/rangeguard/internal/logic"
	"github.com/sweeney/rangeguard/internal/mqtt"
)

// fanout sends every message to each publisher. One failing sink does not
// stop delivery to the others.
type fanout []mqtt.Publisher

func (f fanout) PublishStatus(report logic.Report) error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.PublishStatus(report))
	}
	return errors.Join(errs...)
}

func (f fanout) Publish(event logic.Event) error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.Publish(event))
	}
	return errors.Join(errs...)
}

func (f fanout) PublishSystem(event mqtt.SystemEvent) error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.PublishSystem(event))
	}
	return errors.Join(errs...)
}

func (f fanout) Close() error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
