/*
Package keys builds Beacon's composite storage keys and pagination bounds.

All records share one ordered byte-keyed store. Record kinds are separated by
length-prefixed namespaces:

	config         "config"
	alert          ns("alert") + alert_key
	subscription   ns("subscription", subscriber[20]) + alert_key

where ns encodes every part as a 2-byte big-endian length followed by the
part. All subscriptions of one subscriber therefore form a contiguous,
independently scannable key range.

RangeBounds converts the last key of a page into the bounds of the next
scan. Ascending pages start at cursor+0x01; descending pages end
(exclusively) at the cursor.
*/
package keys
