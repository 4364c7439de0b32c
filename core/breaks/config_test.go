package breaks

import "testing"

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.ShortBreakKm != 360 || c.MaxSingleDriverKm != 4320 {
		t.Fatalf("unexpected regulation constants %+v", c)
	}
	if c.LongRestIntervalsSingle != 2 || c.LongRestIntervalsDouble != 4 {
		t.Fatalf("unexpected long rest intervals %+v", c)
	}
	if c.OverlongPolicy != OverlongReclassify {
		t.Fatalf("unexpected policy %s", c.OverlongPolicy)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"negative short":  func(c *Config) { c.ShortBreakKm = -1 },
		"unknown policy":  func(c *Config) { c.OverlongPolicy = "ignore" },
		"negative jitter": func(c *Config) { c.JitterKm = -5 },
		"jitter too wide": func(c *Config) { c.JitterKm = 60 },
		"zero intervals":  func(c *Config) { c.LongRestIntervalsDouble = -1 },
		"no workers":      func(c *Config) { c.Workers = -2 },
	}
	for name, mutate := range cases {
		c := DefaultConfig()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	c := DefaultConfig()
	c.JitterKm = 50
	if err := c.Validate(); err != nil {
		t.Fatalf("original jitter must be accepted: %v", err)
	}
}
