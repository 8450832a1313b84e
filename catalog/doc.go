// Package catalog loads platform device announcements from YAML.
//
// A catalog lists the devices to announce on the platform bus, each with the
// platform data its driver receives on probe:
//
//	devices:
//	  - name: pseudo-char-device
//	    id: 0
//	    size: 512
//	    perm: RDWR
//	    serial: AXZ
//
// An entry without an id is announced with bus.AutoID and receives its
// position in the catalog as instance index.
package catalog
